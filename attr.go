package ocigo

import (
	"strconv"
	"strings"
)

// Attr identifies one entry of the connection attribute map.
type Attr int

const (
	AttrAutoCommit Attr = iota
	AttrPrefetch
	AttrCase
	AttrFetchLOBs
	AttrDriverName
	AttrClientVersion
	AttrServerVersion
)

// Column name shapes for AttrCase.
const (
	CaseNatural = iota
	CaseLower
	CaseUpper
)

func (a Attr) String() string {
	switch a {
	case AttrAutoCommit:
		return "autocommit"
	case AttrPrefetch:
		return "prefetch"
	case AttrCase:
		return "case"
	case AttrFetchLOBs:
		return "fetchlobs"
	case AttrDriverName:
		return "drivername"
	case AttrClientVersion:
		return "clientversion"
	case AttrServerVersion:
		return "serverversion"
	}
	return "attr(" + strconv.Itoa(int(a)) + ")"
}

// transformCase applies the AttrCase shape to a column name.
func transformCase(name string, mode int) string {
	switch mode {
	case CaseLower:
		return strings.ToLower(name)
	case CaseUpper:
		return strings.ToUpper(name)
	}
	return name
}
