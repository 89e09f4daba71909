package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nanmax/wa-finance-bot-sub000/internal/bot"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

const platformWhatsApp = "whatsapp"

var xmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
	`'`, "&apos;",
)

// normalizeWhatsAppFrom strips Twilio's "whatsapp:" channel prefix.
func normalizeWhatsAppFrom(from string) string {
	from = strings.TrimSpace(from)
	from = strings.TrimPrefix(from, "whatsapp:")
	return strings.TrimSpace(from)
}

// twiml renders a messaging response; an empty msg yields an empty response,
// which tells Twilio not to reply.
func twiml(msg string) string {
	if msg == "" {
		return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<Response/>`
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<Response><Message>` + xmlEscaper.Replace(msg) + `</Message></Response>`
}

// handleWhatsAppWebhook accepts Twilio's inbound WhatsApp form post and
// answers inline with TwiML.
func (s *Server) handleWhatsAppWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	from := normalizeWhatsAppFrom(c.PostForm("From"))
	if from == "" {
		c.Data(http.StatusBadRequest, "application/xml", []byte(twiml("")))
		return
	}

	msg := bot.InboundMessage{
		Text:       c.PostForm("Body"),
		SenderID:   from,
		SenderName: strings.TrimSpace(c.PostForm("ProfileName")),
		ChatID:     from,
		Platform:   platformWhatsApp,
	}
	s.logger.DebugContext(ctx, "WhatsApp message received",
		log.NewFields().WithSender(platformWhatsApp, from, from).ToSlice()...)

	reply, ok := s.bot.Handle(ctx, msg)
	if !ok {
		reply = ""
	}
	c.Data(http.StatusOK, "application/xml", []byte(twiml(reply)))
}
