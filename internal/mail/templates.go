package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// jst is fixed rather than loaded so the binary needs no tzdata.
var jst = time.FixedZone("JST", 9*60*60)

// FormatDateJST renders t as a Japanese long date in Tokyo time, for
// example "2026年12月1日 19:00".
func FormatDateJST(t time.Time) string {
	t = t.In(jst)
	return fmt.Sprintf("%d年%d月%d日 %02d:%02d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// FormatYen renders an amount in yen with thousands separators, or 無料
// for zero.
func FormatYen(amount int64) string {
	if amount == 0 {
		return "無料"
	}
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	var b []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b = append(b, ',')
		}
		b = append(b, s[i])
	}
	if neg {
		return "-￥" + string(b)
	}
	return "￥" + string(b)
}

const layout = `<!DOCTYPE html>
<html lang="ja">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0; padding:0; background-color:#f5f5f5; font-family: 'Hiragino Sans', 'Meiryo', sans-serif;">
  <div style="max-width:600px; margin:0 auto; padding:20px;">
    <div style="background-color:#ffffff; border-radius:8px; overflow:hidden;">
      <div style="background-color:{{.Accent}}; padding:24px; text-align:center;">
        <h1 style="color:#ffffff; margin:0; font-size:20px;">{{.Heading}}</h1>
      </div>
      <div style="padding:24px;">
        <p style="margin:0 0 16px;">{{.DisplayName}} 様</p>
        <p style="margin:0 0 24px;">{{.Lead}}</p>
        <div style="background-color:#f9f9f9; border-radius:8px; padding:16px; margin-bottom:24px;">
          <table style="width:100%; border-collapse:collapse;">
            <tr><td style="padding:8px 0; color:#666; width:80px;">イベント</td><td style="padding:8px 0; font-weight:bold;">{{.EventTitle}}</td></tr>
            <tr><td style="padding:8px 0; color:#666;">日時</td><td style="padding:8px 0;">{{.Date}}</td></tr>
            {{- if .Venue}}
            <tr><td style="padding:8px 0; color:#666;">会場</td><td style="padding:8px 0;">{{.Venue}}</td></tr>
            {{- end}}
            {{- if .Amount}}
            <tr><td style="padding:8px 0; color:#666;">金額</td><td style="padding:8px 0;">{{.Amount}}</td></tr>
            {{- end}}
          </table>
        </div>
        {{- if .Refunded}}
        <p style="margin:0 0 16px;">お支払い済みの金額は返金処理が行われます。返金の反映には数日かかる場合があります。</p>
        {{- end}}
        <p style="margin:0; color:#666; font-size:14px;">※ このメールは自動送信です。{{.Footer}}</p>
      </div>
    </div>
  </div>
</body>
</html>
`

var page = template.Must(template.New("page").Parse(layout))

type pageData struct {
	Accent, Heading, DisplayName, Lead string
	EventTitle, Date, Venue, Amount    string
	Refunded                           bool
	Footer                             string
}

// Compose renders the subject and HTML body for a notification.
func Compose(n model.Notification) (subject, body string, err error) {
	d := pageData{
		DisplayName: n.DisplayName,
		EventTitle:  n.EventTitle,
		Date:        FormatDateJST(n.EventDate),
	}
	switch n.Kind {
	case model.NotifyReservationConfirmed:
		subject = "【予約確定】" + n.EventTitle
		d.Accent, d.Heading = "#06c755", "予約確定のお知らせ"
		d.Lead = "以下のイベントのご予約が確定しました。"
		d.Venue, d.Amount = n.Venue, FormatYen(n.Amount)
		d.Footer = "ご不明な点がございましたら、主催者までお問い合わせください。"
	case model.NotifyReservationCancelled:
		subject = "【予約キャンセル】" + n.EventTitle
		d.Accent, d.Heading = "#666666", "予約キャンセルのお知らせ"
		d.Lead = "以下のイベントの予約がキャンセルされました。"
		d.Refunded = n.Refunded
	default:
		return "", "", fmt.Errorf("no template for %q", n.Kind)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, d); err != nil {
		return "", "", fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return subject, buf.String(), nil
}
