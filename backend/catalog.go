package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Templates []catalogEntry `yaml:"templates"`
}

type catalogEntry struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	IsPublic    bool           `yaml:"isPublic"`
	Rating      float64        `yaml:"rating"`
	Body        map[string]any `yaml:"body"`
}

// LoadCatalog reads a YAML template catalog. Template bodies use the same
// field names as their JSON form.
func LoadCatalog(r io.Reader) ([]*workflow.Template, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("decoding template catalog: %w", err)
	}

	templates := make([]*workflow.Template, 0, len(f.Templates))
	for i, e := range f.Templates {
		if e.Name == "" {
			return nil, fmt.Errorf("template %d: name is required", i)
		}

		b, err := json.Marshal(e.Body)
		if err != nil {
			return nil, fmt.Errorf("template %q: encoding body: %w", e.Name, err)
		}

		var body workflow.TemplateBody
		if err := json.Unmarshal(b, &body); err != nil {
			return nil, fmt.Errorf("template %q: decoding body: %w", e.Name, err)
		}

		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}

		templates = append(templates, &workflow.Template{
			ID:          id,
			Name:        e.Name,
			Description: e.Description,
			Category:    e.Category,
			IsPublic:    e.IsPublic,
			Rating:      e.Rating,
			Body:        body,
		})
	}

	return templates, nil
}

// SeedTemplates stores every template that does not exist yet and returns the
// number of templates created.
func SeedTemplates(ctx context.Context, b Backend, templates []*workflow.Template) (int, error) {
	created := 0
	for _, t := range templates {
		if _, err := b.GetTemplate(ctx, t.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return created, fmt.Errorf("looking up template %q: %w", t.ID, err)
		}

		if t.CreatedAt.IsZero() {
			t.CreatedAt = b.Options().Clock.Now().UTC()
		}

		if err := b.CreateTemplate(ctx, t); err != nil {
			return created, fmt.Errorf("creating template %q: %w", t.ID, err)
		}

		created++
	}

	return created, nil
}
