package domain_test

import (
	"testing"

	"viewcore/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain contracts must stay free of engine internals")
}

func TestDomainUsesOnlyStdlib(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.NonStdlibImportForbidden, "domain contracts carry no third-party dependencies")
}
