// internal/model/template.go
package model

// Template is the active global subject/body pair used when a record has no
// override.
type Template struct {
	Subject string `db:"subject" json:"subject"`
	Body    string `db:"body" json:"body"`
}
