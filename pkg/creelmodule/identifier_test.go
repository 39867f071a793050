package creelmodule_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmilitzer/creel/pkg/creelmodule"
)

func TestCompareOrdersDottedVersions(t *testing.T) {
	a := creelmodule.NewIdentifier(nil, "g", "n", "1.2.0")
	b := creelmodule.NewIdentifier(nil, "g", "n", "1.10.0")

	ordering, err := a.Compare(b)
	require.NoError(t, err)
	require.Equal(t, creelmodule.Less, ordering)
}

func TestCompareIncompatibleAcrossLogicalIdentities(t *testing.T) {
	a := creelmodule.NewIdentifier(nil, "g", "a", "1")
	b := creelmodule.NewIdentifier(nil, "g", "b", "1")

	_, err := a.Compare(b)
	require.True(t, errors.Is(err, creelmodule.ErrIncompatibleIdentifiers))
}

func TestSameLogicalIdentityIgnoresVersion(t *testing.T) {
	a := creelmodule.NewIdentifier(nil, "g", "n", "1")
	b := creelmodule.NewIdentifier(nil, "g", "n", "2")
	require.True(t, a.SameLogicalIdentity(b))
}
