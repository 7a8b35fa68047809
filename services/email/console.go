package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
)

// SentMessages collects every message the mock service delivers.
// Tests inspect it to assert on outgoing mail.
var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// consoleService renders messages and dumps them to the log instead
// of delivering them. Used in development and as the base of the
// test mock.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	silent     bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService() core.EmailService {
	return &consoleService{
		from:       core.Conf.DefaultFromEmail,
		subjPrefix: "[" + core.Conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Printf("%+v", errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || (!msg.HasContent() && !msg.HasAttachments()) {
		return
	}
	svc.dump(*msg)
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
}

// dump writes the message to the log as a rough MIME document.
func (svc consoleService) dump(msg core.EmailMessage) {
	body := new(strings.Builder)
	svc.writeHeader(body, msg)

	altW := multipart.NewWriter(body)
	defer altW.Close()

	var mixedW *multipart.Writer
	if msg.HasAttachments() {
		mixedW = multipart.NewWriter(body)
		defer mixedW.Close()
		fmt.Fprintf(body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixedW.Boundary())
		if _, err := mixedW.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"multipart/alternative", "boundary=" + altW.Boundary()},
		}); err != nil {
			log.Printf("%+v", errors.Wrap(err, "creating multipart/alternative part"))
			return
		}
	} else {
		fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())
	}

	if err := svc.writeContent(altW, msg); err != nil {
		log.Printf("%+v", err)
		return
	}
	if mixedW != nil {
		if err := svc.writeAttachments(mixedW, msg); err != nil {
			log.Printf("%+v", err)
			return
		}
	}

	if !svc.silent {
		log.Println(body.String())
	}
}

func (svc consoleService) writeHeader(body *strings.Builder, msg core.EmailMessage) {
	fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
}

func (svc consoleService) writeContent(altW *multipart.Writer, msg core.EmailMessage) error {
	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain"}})
	if err != nil {
		return errors.Wrap(err, "creating text/plain part")
	}
	fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.TemplateName != "" {
		if w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html"}}); err != nil {
			return errors.Wrap(err, "creating text/html part")
		}
		fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	return nil
}

func (svc consoleService) writeAttachments(mixedW *multipart.Writer, msg core.EmailMessage) error {
	for _, at := range msg.Attachments {
		w, err := mixedW.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {"attachment; filename=" + at.Filename},
		})
		if err != nil {
			return errors.Wrap(err, "creating "+at.ContentType+" part")
		}
		fmt.Fprintf(w, "%s\r\n", at.Content.String())
	}
	return nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// consoleServiceMock sends synchronously and never logs, so tests can
// read SentMessages right after the call that triggers the mail.
type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock() core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			from:       core.Conf.DefaultFromEmail,
			subjPrefix: "[" + core.Conf.AppName + "] ",
			silent:     true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}
