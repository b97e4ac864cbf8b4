package account

// Intent discriminates which mutation a settings submission requests.
// The dispatcher only ever branches on this closed set; anything else is a
// soft failure.
type Intent string

const (
	IntentUpdateUserInfo Intent = "updateUserInfo"
	IntentUploadPhoto    Intent = "uploadPhoto"
	IntentRemovePhoto    Intent = "removePhoto"
	IntentUnlinkOAuth    Intent = "unlinkOAuth"
)

// Submission carries the parsed fields of one settings form submission.
// Exactly one intent handler consumes it.
type Submission struct {
	Intent   string
	Email    string
	Username string
	Provider string
	Photo    *PhotoUpload
}
