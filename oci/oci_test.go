package oci

import (
	"testing"
)

func TestErrorMessage(t *testing.T) {
	withMessage := &Error{Code: 942, Message: "ORA-00942: table or view does not exist"}
	if got := withMessage.Error(); got != "ORA-00942: table or view does not exist" {
		t.Errorf("Error() is %q, want the native message", got)
	}
	bare := &Error{Code: 7}
	if got := bare.Error(); got != "native error 7" {
		t.Errorf("Error() without a message is %q, want %q", got, "native error 7")
	}
}

func TestEnumStrings(t *testing.T) {
	modes := map[ExecMode]string{
		ExecCommitOnSuccess: "commit",
		ExecNoAutoCommit:    "defer",
		ExecDescribeOnly:    "describe",
		ExecMode(9):         "execmode(9)",
	}
	for mode, want := range modes {
		if got := mode.String(); got != want {
			t.Errorf("ExecMode(%d).String() is %q, want %q", int(mode), got, want)
		}
	}

	descriptors := map[DescriptorType]string{
		DescriptorLOB:     "lob",
		DescriptorFile:    "file",
		DescriptorRowid:   "rowid",
		DescriptorType(9): "descriptor(9)",
	}
	for typ, want := range descriptors {
		if got := typ.String(); got != want {
			t.Errorf("DescriptorType(%d).String() is %q, want %q", int(typ), got, want)
		}
	}

	binds := map[BindType]string{
		BindChar:       "char",
		BindInt:        "int",
		BindFloat:      "float",
		BindRaw:        "raw",
		BindDate:       "date",
		BindBlob:       "blob",
		BindClob:       "clob",
		BindFile:       "bfile",
		BindCursor:     "cursor",
		BindCollection: "collection",
		BindRowid:      "rowid",
		BindType(99):   "bindtype(99)",
	}
	for typ, want := range binds {
		if got := typ.String(); got != want {
			t.Errorf("BindType(%d).String() is %q, want %q", int(typ), got, want)
		}
	}
}
