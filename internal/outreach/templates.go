package outreach

import (
	"context"
	"strings"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

// DefaultTag is substituted for {tag} when a profile has no tags.
const DefaultTag = "connection"

// Values are the four placeholder substitutions.
type Values struct {
	FirstName string
	Title     string
	Company   string
	Tag       string
}

// MockPreview is used for previews until a real profile has been filled in.
var MockPreview = Values{
	FirstName: "John",
	Title:     "Product Manager",
	Company:   "Stripe",
	Tag:       "SaaS Founder",
}

// Render replaces {firstName}, {title}, {company} and {tag} literally. Any other
// brace token is left as is.
func Render(tmpl string, v Values) string {
	return strings.NewReplacer(
		"{firstName}", v.FirstName,
		"{title}", v.Title,
		"{company}", v.Company,
		"{tag}", v.Tag,
	).Replace(tmpl)
}

func (v Values) profile() models.PreviewProfile {
	return models.PreviewProfile{FirstName: v.FirstName, Title: v.Title, Company: v.Company, Tag: v.Tag}
}

func valuesOf(p models.PreviewProfile) Values {
	return Values{FirstName: p.FirstName, Title: p.Title, Company: p.Company, Tag: p.Tag}
}

// SavePreview stores the values last used to fill a note.
func (r *Records) SavePreview(ctx context.Context, v Values) error {
	return r.st.Save(ctx, store.Local, models.KeyPreviewProfile, v.profile())
}

// PreviewValues returns the stored preview profile, or MockPreview when none exists.
func (r *Records) PreviewValues(ctx context.Context) (Values, error) {
	var p models.PreviewProfile
	found, err := r.st.Load(ctx, store.Local, models.KeyPreviewProfile, &p)
	if err != nil {
		return Values{}, err
	}
	if !found {
		return MockPreview, nil
	}
	return valuesOf(p), nil
}

// Preview renders tmpl against PreviewValues.
func (r *Records) Preview(ctx context.Context, tmpl string) (string, error) {
	v, err := r.PreviewValues(ctx)
	if err != nil {
		return "", err
	}
	return Render(tmpl, v), nil
}
