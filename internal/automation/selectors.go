package automation

// Profile page markup the automation relies on. When LinkedIn changes it, this
// is the only place to edit.
var (
	ConnectSelectors = []string{
		`button[data-control-name="connect"]`,
		`.pv-s-profile-actions--connect`,
		`button[aria-label*="Invite"][aria-label*="connect"]`,
	}
	NoteButtonSelectors = []string{`button[aria-label*="Add a note"]`}

	SendSelector = `.artdeco-button__text`
	SendText     = "Send"

	DialogSelectors = []string{`[data-test-modal]`, `.artdeco-modal__content`, `div[role="dialog"]`}
	FieldSelectors  = []string{`textarea`, `[role="textbox"]`}

	NameSelectors    = []string{`.text-heading-xlarge`, `.profile-topcard-person-entity__name`}
	TitleSelectors   = []string{`.text-body-medium.break-words`}
	CompanySelectors = []string{`[data-test-line-clamp-content]`}
)

// noteFieldSelectors scopes every field selector to every dialog, dialogs first.
func noteFieldSelectors() []string {
	out := make([]string, 0, len(DialogSelectors)*len(FieldSelectors))
	for _, d := range DialogSelectors {
		for _, f := range FieldSelectors {
			out = append(out, d+" "+f)
		}
	}
	return out
}
