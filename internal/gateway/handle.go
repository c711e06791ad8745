package gateway

import (
	"context"
	"strings"

	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/model"
)

// parseHandle splits an SSH login handle into an owner and a target, per
// spec.md §4.1: the first '-'-delimited segment is the owner, the
// remainder (rejoined with '-') is the suffix. A suffix matching a
// template name the owner can see is template mode; otherwise it is
// instance mode; no suffix is menu mode.
func parseHandle(ctx context.Context, store instancestore.InstanceStore, handle string) (model.Owner, model.Target, error) {
	parts := strings.SplitN(handle, "-", 2)
	owner := model.Owner(parts[0])
	if len(parts) == 1 {
		return owner, model.Target{Kind: model.TargetMenu}, nil
	}

	suffix := model.ShortName(parts[1])
	templates, err := store.ListTemplates(ctx, owner)
	if err != nil {
		return owner, model.Target{}, err
	}
	for _, t := range templates {
		if t.Name == suffix {
			return owner, model.Target{Kind: model.TargetTemplate, Name: suffix}, nil
		}
	}
	return owner, model.Target{Kind: model.TargetInstance, Name: suffix}, nil
}
