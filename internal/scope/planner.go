package scope

// Path is a retrieval strategy for pull request enumeration.
type Path int

const (
	// ListPath retrieves the full unfiltered collection and filters client
	// side. Always complete regardless of volume.
	ListPath Path = iota

	// SearchPath issues a pre-filtered search query. Faster, but the search
	// index caps results at SearchResultCeiling; only safe below the cap.
	SearchPath
)

// SearchResultCeiling is the fixed maximum result volume of the search API.
// Windows expected to exceed it should be segmented by the caller; the
// planner does not enforce this.
const SearchResultCeiling = 1000

func (p Path) String() string {
	if p == SearchPath {
		return "search"
	}
	return "list"
}

// Plan selects the retrieval strategy. The search path engages only when
// merged-only results are requested together with both window bounds; every
// other combination takes the always-complete list path.
func Plan(mergedOnly bool, w Window) Path {
	if mergedOnly && w.Bounded() {
		return SearchPath
	}
	return ListPath
}
