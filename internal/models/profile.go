package models

// Profile is the display info of a user, owned by the profile service.
// Avatar is the object path inside the avatars bucket.
type Profile struct {
	ID       string  `db:"id" json:"id"`
	Username string  `db:"username" json:"username"`
	Avatar   *string `db:"avatar" json:"avatar,omitempty"`
}
