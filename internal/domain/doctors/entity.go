package doctors

// Registration is what a doctor submits to create an account.
type Registration struct {
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom,omitempty"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Specialite string `json:"specialite"`
}

// Registered is the auth service answer to a registration.
type Registered struct {
	DoctorID string `json:"doctorId"`
	Message  string `json:"message"`
}

// Session is the doctor state of one client. ID, name and token are
// always stored and cleared together. An anonymous client has no token and
// is identified by ClientID alone.
type Session struct {
	DoctorID string `json:"doctorId"`
	Name     string `json:"nom"`
	Token    string `json:"access_token"`
	Message  string `json:"message,omitempty"`
	ClientID string `json:"-"`
}

// Anonymous is the session of a client that has not logged in.
func Anonymous(clientID string) *Session {
	return &Session{ClientID: clientID}
}

// Authenticated reports whether the session carries a token.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// Owner is the key the client's local data is filed under: the doctor id
// once logged in, "anon:<client id>" before that. It is empty when the
// session identifies nobody.
func (s *Session) Owner() string {
	switch {
	case s == nil:
		return ""
	case s.Authenticated():
		return s.DoctorID
	case s.ClientID != "":
		return "anon:" + s.ClientID
	}
	return ""
}
