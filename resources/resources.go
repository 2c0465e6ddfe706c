package resources

import "embed"

//go:embed migrations i18n captcha
var FS embed.FS
