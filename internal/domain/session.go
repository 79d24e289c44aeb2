package domain

// ClientSession is the authenticated identity bound to a request or a
// realtime connection. It is read-only once admitted.
type ClientSession struct {
	UserEmail    string `json:"userEmail"`
	Role         Role   `json:"userType"`
	SessionToken string `json:"-"`
}
