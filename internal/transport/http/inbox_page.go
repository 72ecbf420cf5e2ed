package httptransport

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const inboxTemplateName = "inbox.html"

// 模板会对 HTML 与 JS 上下文分别转义邀请码
var inboxTemplate = template.Must(template.New(inboxTemplateName).Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Doodle Inbox · {{.Code}}</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 24px; background: #f7f2ea; }
      h1 { font-size: 22px; }
      .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(160px, 1fr)); gap: 12px; }
      .card { background: white; border-radius: 12px; border: 1px solid #e4d7ca; overflow: hidden; }
      .card img { width: 100%; height: 160px; object-fit: cover; display: block; }
      .meta { padding: 6px 10px; font-size: 12px; }
      .empty { color: #6b4f34; }
    </style>
  </head>
  <body>
    <h1>Doodle Inbox</h1>
    <div id="grid" class="grid"></div>
    <div id="empty" class="empty" style="display:none;">No doodles yet.</div>
    <script>
      const code = {{.Code}};
      fetch('/api/inbox/' + encodeURIComponent(code))
        .then(r => r.json())
        .then(data => {
          const grid = document.getElementById('grid');
          const empty = document.getElementById('empty');
          if (!data.ok || !data.items || data.items.length === 0) {
            empty.style.display = 'block';
            return;
          }
          data.items.forEach(item => {
            const card = document.createElement('div');
            card.className = 'card';
            const img = document.createElement('img');
            img.src = item.dataUrl;
            const meta = document.createElement('div');
            meta.className = 'meta';
            meta.textContent = item.fromName ? 'From ' + item.fromName : 'Doodle';
            card.appendChild(img);
            card.appendChild(meta);
            grid.appendChild(card);
          });
        });
    </script>
  </body>
</html>
`))

// inboxPage GET /inbox/:code 浏览器查看收件箱
func inboxPage(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.String(http.StatusBadRequest, MsgMissingCode)
		return
	}
	c.HTML(http.StatusOK, inboxTemplateName, gin.H{"Code": code})
}
