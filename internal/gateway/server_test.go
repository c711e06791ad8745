package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marma/whistler/internal/model"
)

func TestPermissionsForRoundTripsOwnerAndTarget(t *testing.T) {
	perms := permissionsFor(model.Owner("alice"), model.Target{Kind: model.TargetInstance, Name: "dev1"})

	assert.Equal(t, "alice", perms.Extensions["owner"])
	assert.Equal(t, "dev1", perms.Extensions["targetName"])
	assert.Equal(t, int(model.TargetInstance), mustAtoi(perms.Extensions["targetKind"]))
}

func TestMustAtoiRejectsNonDigits(t *testing.T) {
	assert.Equal(t, 0, mustAtoi("not-a-number"))
	assert.Equal(t, 42, mustAtoi("42"))
}
