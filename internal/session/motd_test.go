package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marma/whistler/internal/model"
)

func TestBuildMOTDUsesCRLFAndListsMounts(t *testing.T) {
	out := string(buildMOTD(motdInput{
		InstanceName:      "dev1",
		PersonalMountPath: "/data",
		Volumes: []model.VolumeMount{
			{Name: "data", MountPath: "/data"},
			{Name: "scratch", MountPath: "/scratch"},
		},
		IsEphemeral: true,
		Preemptible: true,
	}))

	assert.Contains(t, out, "Welcome to dev1\r\n")
	assert.Contains(t, out, "* data - /data\r\n")
	assert.Contains(t, out, "* scratch - /scratch\r\n")
	assert.Contains(t, out, "ephemeral")
	assert.Contains(t, out, "preemptible")
	assert.NotContains(t, out, "\n\n")
	for _, line := range strings.Split(strings.TrimRight(out, "\r\n"), "\r\n") {
		assert.False(t, strings.Contains(line, "\n"), "line should not contain a bare LF: %q", line)
	}
}

func TestBuildMOTDOmitsSectionsWhenEmpty(t *testing.T) {
	out := string(buildMOTD(motdInput{InstanceName: "dev2"}))
	assert.Contains(t, out, "Welcome to dev2\r\n")
	assert.NotContains(t, out, "Mounted volumes")
	assert.NotContains(t, out, "ephemeral")
	assert.NotContains(t, out, "preemptible")
}
