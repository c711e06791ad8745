package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marma/whistler/internal/model"
)

type fakeTemplateStore struct {
	templates []model.Template
}

func (f *fakeTemplateStore) ListTemplates(ctx context.Context, owner model.Owner) ([]model.Template, error) {
	return f.templates, nil
}
func (f *fakeTemplateStore) ListInstances(ctx context.Context, owner model.Owner) ([]model.Instance, error) {
	return nil, nil
}
func (f *fakeTemplateStore) GetInstance(ctx context.Context, owner model.Owner, short model.ShortName) (model.Instance, bool, error) {
	return model.Instance{}, false, nil
}
func (f *fakeTemplateStore) CreateInstance(ctx context.Context, owner model.Owner, templateRef model.FullName, short model.ShortName, preemptible bool) error {
	return nil
}
func (f *fakeTemplateStore) SaveTemplate(ctx context.Context, owner model.Owner, tmpl model.Template) error {
	return nil
}
func (f *fakeTemplateStore) DeleteInstance(ctx context.Context, owner model.Owner, short model.ShortName) error {
	return nil
}
func (f *fakeTemplateStore) PatchInstanceAnnotation(ctx context.Context, owner model.Owner, short model.ShortName, key, value string) error {
	return nil
}

func TestParseHandleNoSuffixIsMenu(t *testing.T) {
	store := &fakeTemplateStore{}
	owner, target, err := parseHandle(context.Background(), store, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.Owner("alice"), owner)
	assert.Equal(t, model.TargetMenu, target.Kind)
}

func TestParseHandleMatchingTemplateIsTemplateMode(t *testing.T) {
	store := &fakeTemplateStore{templates: []model.Template{{Name: "small"}}}
	owner, target, err := parseHandle(context.Background(), store, "alice-small")
	require.NoError(t, err)
	assert.Equal(t, model.Owner("alice"), owner)
	assert.Equal(t, model.TargetTemplate, target.Kind)
	assert.Equal(t, model.ShortName("small"), target.Name)
}

func TestParseHandleUnmatchedSuffixIsInstanceMode(t *testing.T) {
	store := &fakeTemplateStore{templates: []model.Template{{Name: "small"}}}
	owner, target, err := parseHandle(context.Background(), store, "alice-dev1")
	require.NoError(t, err)
	assert.Equal(t, model.Owner("alice"), owner)
	assert.Equal(t, model.TargetInstance, target.Kind)
	assert.Equal(t, model.ShortName("dev1"), target.Name)
}

func TestParseHandleSuffixWithDashesRejoins(t *testing.T) {
	store := &fakeTemplateStore{}
	_, target, err := parseHandle(context.Background(), store, "alice-my-box")
	require.NoError(t, err)
	assert.Equal(t, model.ShortName("my-box"), target.Name)
}
