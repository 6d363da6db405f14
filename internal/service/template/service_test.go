package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluntree/engage-api/internal/model"
	apperrors "github.com/voluntree/engage-api/pkg/errors"
)

type fakeTemplateRepo struct {
	templates map[string]*model.NotificationTemplate
	lookups   int
}

func (f *fakeTemplateRepo) GetActiveByName(_ context.Context, name string) (*model.NotificationTemplate, error) {
	f.lookups++
	return f.templates[name], nil
}

func newTestService(templates ...*model.NotificationTemplate) (*Service, *fakeTemplateRepo) {
	repo := &fakeTemplateRepo{templates: make(map[string]*model.NotificationTemplate)}
	for _, tmpl := range templates {
		repo.templates[tmpl.Name] = tmpl
	}
	return NewService(repo), repo
}

func TestRenderSubstitutesVariables(t *testing.T) {
	svc, _ := newTestService(&model.NotificationTemplate{
		Name:           "rating_received",
		Version:        2,
		Active:         true,
		TitlePattern:   "You received a new rating",
		MessagePattern: "{rater_name} rated you {rating} stars for \"{event_title}\".",
		ActionPattern:  "View rating",
	})

	rendered, err := svc.Render(context.Background(), "rating_received", Vars{
		"rater_name":  "Helping Hands",
		"rating":      "5",
		"event_title": "Beach Cleanup",
	})
	require.NoError(t, err)

	assert.Equal(t, "You received a new rating", rendered.Title)
	assert.Equal(t, `Helping Hands rated you 5 stars for "Beach Cleanup".`, rendered.Message)
	assert.Equal(t, "View rating", rendered.ActionText)
	assert.Equal(t, 2, rendered.Template.Version)
}

func TestRenderRepeatedPlaceholder(t *testing.T) {
	svc, _ := newTestService(&model.NotificationTemplate{
		Name:           "repeat",
		Active:         true,
		TitlePattern:   "{name} and {name}",
		MessagePattern: "{name}",
	})

	rendered, err := svc.Render(context.Background(), "repeat", Vars{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x and x", rendered.Title)
}

// Unmatched placeholders stay verbatim in the output rather than
// erroring. Known limitation of the substitution policy.
func TestRenderLeavesUnmatchedPlaceholdersVerbatim(t *testing.T) {
	svc, _ := newTestService(&model.NotificationTemplate{
		Name:           "reminder",
		Active:         true,
		TitlePattern:   "Reminder for {event_title}",
		MessagePattern: "You have {days_remaining} days left.",
	})

	rendered, err := svc.Render(context.Background(), "reminder", Vars{
		"event_title": "Food Drive",
	})
	require.NoError(t, err)

	assert.Equal(t, "Reminder for Food Drive", rendered.Title)
	assert.Equal(t, "You have {days_remaining} days left.", rendered.Message)
}

func TestRenderUnknownTemplate(t *testing.T) {
	svc, _ := newTestService()

	rendered, err := svc.Render(context.Background(), "unknown_template", Vars{})
	assert.Nil(t, rendered)
	assert.ErrorIs(t, err, apperrors.ErrTemplateNotFound)
}

func TestRenderCachesActiveTemplate(t *testing.T) {
	svc, repo := newTestService(&model.NotificationTemplate{
		Name:           "cached",
		Active:         true,
		TitlePattern:   "t",
		MessagePattern: "m",
	})

	for i := 0; i < 3; i++ {
		_, err := svc.Render(context.Background(), "cached", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.lookups)
}
