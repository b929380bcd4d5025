package codelet

// Summary is the lightweight list-view projection of a snippet, as returned
// by /api/v1/user/small/snippets.
type Summary struct {
	ID       int    `json:"id"`
	Language string `json:"language"`
	Title    string `json:"title"`
	Favorite bool   `json:"favorite"`
}

// Snippet is the full record returned by /api/v1/user/snippets/{id}.
type Snippet struct {
	ID          int      `json:"id"`
	Language    string   `json:"language"`
	Title       string   `json:"title"`
	Code        string   `json:"code"`
	Favorite    bool     `json:"favorite"`
	Private     bool     `json:"private"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// Draft carries the user-editable fields for create and update requests.
// The client fills in the server defaults (favorite=false, private=true) at
// submission time rather than leaving them to the server.
type Draft struct {
	Language    string   `json:"language"`
	Title       string   `json:"title"`
	Code        string   `json:"code"`
	Favorite    bool     `json:"favorite"`
	Private     bool     `json:"private"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type usernameResponse struct {
	Username string `json:"username"`
}

// errorResponse mirrors the server's JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
