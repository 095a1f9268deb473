package audit

import "strings"

// maskToken is the fixed-length filler placed between the revealed prefix
// and suffix so the masked form does not leak the credential length.
const maskToken = "********"

// MaskCredential redacts a bearer credential for audit records and log
// surfaces. Credentials of at least 8 characters keep their first and last 4
// characters around the fixed mask token; shorter ones are fully masked with
// no characters revealed.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) < 8 {
		return strings.Repeat("*", len(credential))
	}
	return credential[:4] + maskToken + credential[len(credential)-4:]
}
