package session

import (
	"fmt"
	"strings"

	"github.com/marma/whistler/internal/model"
)

// motdBanner is the fixed ASCII block every MOTD opens with, grounded
// on _generate_motd in original_source/whistler/server.py but re-drawn
// rather than copied character-for-character.
const motdBanner = `
 __        ___     _     _   _
 \ \      / / |__ (_)___| |_| | ___ _ __
  \ \ /\ / /| '_ \| / __| __| |/ _ \ '__|
   \ V  V / | | | | \__ \ |_| |  __/ |
    \_/\_/  |_| |_|_|___/\__|_|\___|_|
`

// motdInput is everything buildMOTD needs, assembled by the caller from
// the resolved Instance/Template so this package stays free of
// InstanceStore dependencies.
type motdInput struct {
	InstanceName      model.ShortName
	PersonalMountPath string
	Volumes           []model.VolumeMount
	IsEphemeral       bool
	Preemptible       bool
}

// buildMOTD renders the welcome message per spec.md §6: banner, welcome
// line, personal-mount line, volume list, ephemeral/preemptible
// notices, all terminated with CRLF line endings.
func buildMOTD(in motdInput) []byte {
	var b strings.Builder
	b.WriteString(motdBanner)
	b.WriteString(fmt.Sprintf("Welcome to %s\n", in.InstanceName))

	if in.PersonalMountPath != "" {
		b.WriteString(fmt.Sprintf("Your personal files are mounted at %s\n", in.PersonalMountPath))
	}

	if len(in.Volumes) > 0 {
		b.WriteString("Mounted volumes:\n")
		for _, v := range in.Volumes {
			b.WriteString(fmt.Sprintf("* %s - %s\n", v.Name, v.MountPath))
		}
	}

	if in.IsEphemeral {
		b.WriteString("This instance is ephemeral and will be deleted when you disconnect.\n")
	}
	if in.Preemptible {
		b.WriteString("This instance is preemptible and may be evicted without warning.\n")
	}

	return []byte(strings.ReplaceAll(b.String(), "\n", "\r\n"))
}
