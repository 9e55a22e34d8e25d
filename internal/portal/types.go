package portal

// Challenge is one login attempt's material: the cookies the login page set,
// its hidden inputs, the absolute form action and the captcha image.
type Challenge struct {
	Cookies      Jar
	HiddenFields map[string]string
	LoginURL     string
	CaptchaImage []byte // nil when the page has no captcha
	CaptchaMIME  string
}

// Credentials identify the user. CaptchaAnswer may be empty.
type Credentials struct {
	Username      string
	Password      string
	OrgCode       string
	CaptchaAnswer string
}

// Session is the authenticated landing page plus the cookies that reach it.
type Session struct {
	Cookies  Jar
	HTML     string
	FinalURL string
}

// Process is one case row as rendered by the Portal.
type Process struct {
	Protocol          string `json:"protocolo"`
	Link              string `json:"link_sei"`
	Unit              string `json:"unidade"`
	InterestedParties string `json:"interessados"`
	AssignedTo        string `json:"atribuido_a"`
	Description       string `json:"descricao"`
	Type              string `json:"tipo"`
	Date              string `json:"data"`
}

// Listing formats.
const (
	FormatAnchors = "anchors"
	FormatTable   = "table"
	FormatNone    = "none"
)

// Diagnostics describes what the extractor saw, for debugging markup drift.
type Diagnostics struct {
	Format      string `json:"format"`
	FinalURL    string `json:"finalUrl"`
	AnchorCount int    `json:"anchorCount"`
	TableCount  int    `json:"tableCount"`
	RowCount    int    `json:"rowCount"`
	FormPresent bool   `json:"formPresent"`
	Snippet     string `json:"snippet,omitempty"`
}

// Listing is the result of a successful authentication.
type Listing struct {
	Session     Session
	Processes   []Process
	Diagnostics Diagnostics
}

// DetailRequest carries everything needed to open one case, including the
// credentials for a captcha-free re-login when the session has expired.
type DetailRequest struct {
	Credentials Credentials
	Cookies     Jar
	Link        string
}

// Node kinds.
const (
	KindFolder   = "folder"
	KindDocument = "document"
)

// TreeNode is one entry of a case's document tree.
type TreeNode struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Kind  string `json:"type"`
}

// Movement is one row of a case's history.
type Movement struct {
	Date        string `json:"data"`
	Unit        string `json:"unidade"`
	Description string `json:"descricao"`
}

// ProcessDetail is a case's document tree and history. Either list may be
// empty when its sub-fetch failed.
type ProcessDetail struct {
	Tree    []TreeNode `json:"tree"`
	History []Movement `json:"history"`
}
