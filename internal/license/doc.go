// Package license decodes AAMVA driver's-license payloads into student
// records. Decoding never fails; garbled input yields partial fields.
package license
