package statement

import "strings"

type Kind int

const (
	KindSelect = Kind(iota)
	KindInsert
	KindUpdate
	KindDelete
	KindDDL
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindDDL:
		return "ddl"
	default:
		return "other"
	}
}

// IsQuery reports statements that return rows.
func (k Kind) IsQuery() bool {
	return k == KindSelect
}

// Span is a half-open interval [Start, Stop) of byte offsets into the statement text.
type Span struct {
	Start int
	Stop  int
}

var NoSpan = Span{Start: -1, Stop: -1}

func (s Span) Valid() bool {
	return s.Start >= 0 && s.Stop >= s.Start
}

func (s Span) Contains(pos int) bool {
	return pos >= s.Start && pos < s.Stop
}

// TableRef is a table referenced by the statement.
type TableRef struct {
	Name   string
	Alias  string
	Schema string
}

// TableToken is one occurrence of a table name in the text, either as a
// table reference or as a column qualifier.
type TableToken struct {
	Table string
	Span
	// Quote is the identifier quote used in the text, empty when unquoted.
	Quote string
	// Schema covers "db." when the occurrence is schema qualified.
	Schema Span
}

// Assignment is one SET item of an UPDATE.
type Assignment struct {
	Table  string
	Column string
	Value  *Expr
}

// Statement is the parsed form of one logical SQL statement. It owns all of
// its parts and carries no references back into the parser.
type Statement struct {
	Kind Kind
	SQL  string

	Tables      []TableRef
	TableTokens []TableToken

	Where *Expr

	// ParamPositions holds the offset of every '?' marker in order.
	ParamPositions []int

	Select      *SelectInfo
	Insert      *InsertInfo
	Assignments []Assignment
}

func (s *Statement) ParamCount() int {
	return len(s.ParamPositions)
}

// TableNames returns the distinct lower-cased table names in reference order.
func (s *Statement) TableNames() []string {
	var res []string
	seen := map[string]struct{}{}
	for _, t := range s.Tables {
		n := strings.ToLower(t.Name)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		res = append(res, n)
	}
	return res
}

// ResolveQualifier maps a column qualifier (table name or alias) to the table name.
func (s *Statement) ResolveQualifier(q string) (string, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Alias, q) {
			return strings.ToLower(t.Name), true
		}
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, q) {
			return strings.ToLower(t.Name), true
		}
	}
	return "", false
}
