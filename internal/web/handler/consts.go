package handler

const (
	// BaseLayout is the default path for layout templates.
	BaseLayout = "layouts/base"

	// RootPath is the root path the route group.
	RootPath = "/"

	// APIPrefix is the prefix of the same origin api.
	APIPrefix = "/api"

	// AdminPrefix is the prefix of the admin api.
	AdminPrefix = APIPrefix + "/admin"

	// BodyLimit is the maximum request body size, profile images arrive as JSON number arrays.
	BodyLimit = 16 << 20

	// ErrNilDepsFatalLogMsg is used if app, cfg or deps are nil.
	ErrNilDepsFatalLogMsg = "app, cfg or deps is nil"
)
