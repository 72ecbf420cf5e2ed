package client

import (
	"fmt"
	"net/url"
	"strings"
)

// InboxLink 收件箱网页地址 <base>/inbox/<code>
func InboxLink(base, code string) string {
	return NormalizeBaseURL(base) + "/inbox/" + url.PathEscape(code)
}

// ShareMessage 分享给好友的短信文本
func ShareMessage(name, link string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Me"
	}
	return fmt.Sprintf("Doodle from %s: %s", name, link)
}
