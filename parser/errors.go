package parser

import "fmt"

// MalformedPageError reports a page missing a structural element the parser
// cannot do without.
type MalformedPageError struct {
	Selector string
	Reason   string
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("malformed page: %s (%s)", e.Reason, e.Selector)
}
