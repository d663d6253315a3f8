package outreach

import (
	"context"
	"strings"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

func (r *Records) AllTags(ctx context.Context) (map[string][]string, error) {
	tags := map[string][]string{}
	if _, err := r.st.Load(ctx, store.Local, models.KeyTags, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *Records) Tags(ctx context.Context, url string) ([]string, error) {
	tags, err := r.AllTags(ctx)
	if err != nil {
		return nil, err
	}
	return tags[url], nil
}

// AddTag adds tag to a profile. Tags are a set kept in insertion order; a blank
// tag is ignored.
func (r *Records) AddTag(ctx context.Context, url, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	tags, err := r.AllTags(ctx)
	if err != nil {
		return err
	}
	for _, t := range tags[url] {
		if t == tag {
			return nil
		}
	}
	tags[url] = append(tags[url], tag)
	return r.st.Save(ctx, store.Local, models.KeyTags, tags)
}

// TagString joins a profile's tags for the {tag} placeholder.
func TagString(tags []string) string {
	if len(tags) == 0 {
		return DefaultTag
	}
	return strings.Join(tags, ", ")
}

func (r *Records) Notes(ctx context.Context) (map[string]string, error) {
	notes := map[string]string{}
	if _, err := r.st.Load(ctx, store.Local, models.KeyNotes, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *Records) Note(ctx context.Context, url string) (string, error) {
	notes, err := r.Notes(ctx)
	if err != nil {
		return "", err
	}
	return notes[url], nil
}

func (r *Records) SetNote(ctx context.Context, url, note string) error {
	notes, err := r.Notes(ctx)
	if err != nil {
		return err
	}
	notes[url] = note
	return r.st.Save(ctx, store.Local, models.KeyNotes, notes)
}
