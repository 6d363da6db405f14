package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
	apperrors "github.com/voluntree/engage-api/pkg/errors"
)

const (
	cacheTTL   = 5 * time.Minute
	cacheSweep = 10 * time.Minute
)

// Vars maps placeholder names to their replacement values.
type Vars map[string]string

// Rendered is the outcome of substituting variables into the active
// template for a name.
type Rendered struct {
	Title      string
	Message    string
	ActionText string
	Template   *model.NotificationTemplate
}

// Service looks up active templates and performs literal {key}
// substitution. Rendering has no side effects.
type Service struct {
	repo  repository.TemplateRepository
	cache *cache.Cache
}

func NewService(repo repository.TemplateRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cacheSweep),
	}
}

// Render substitutes vars into the highest active version of the
// named template. Placeholders with no matching variable are left
// verbatim in the output.
func (s *Service) Render(ctx context.Context, name string, vars Vars) (*Rendered, error) {
	tmpl, err := s.active(ctx, name)
	if err != nil {
		return nil, err
	}

	return &Rendered{
		Title:      substitute(tmpl.TitlePattern, vars),
		Message:    substitute(tmpl.MessagePattern, vars),
		ActionText: substitute(tmpl.ActionPattern, vars),
		Template:   tmpl,
	}, nil
}

func (s *Service) active(ctx context.Context, name string) (*model.NotificationTemplate, error) {
	if cached, ok := s.cache.Get(name); ok {
		return cached.(*model.NotificationTemplate), nil
	}

	tmpl, err := s.repo.GetActiveByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up template %q: %w", name, err)
	}
	if tmpl == nil {
		return nil, apperrors.ErrTemplateNotFound
	}

	s.cache.Set(name, tmpl, cache.DefaultExpiration)
	return tmpl, nil
}

func substitute(pattern string, vars Vars) string {
	if pattern == "" || len(vars) == 0 {
		return pattern
	}
	out := pattern
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}
