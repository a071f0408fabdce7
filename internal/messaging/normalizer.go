package messaging

import (
	"log/slog"

	"github.com/bazaarlink/bazaarbot/internal/media"
	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
	"go.mau.fi/whatsmeow/types/events"
)

// NormalizeEvent converts a raw whatsmeow message event into the transport-
// neutral IncomingMessage the router consumes. It never panics on partial
// protos: every proto access goes through the generated nil-safe getters,
// and anything unrecognized comes back as KindUnsupported so flows can
// re-prompt instead of crashing.
//
// Media-bearing messages (images, documents) are registered with the media
// store; the message carries only the opaque handle.
func NormalizeEvent(evt *events.Message, mediaStore *media.Store) (models.IncomingMessage, bool) {
	if evt == nil || evt.Message == nil {
		return models.IncomingMessage{}, false
	}

	from, err := CanonicalizePhone(evt.Info.Sender.User)
	if err != nil {
		slog.Debug("Dropping message with unusable sender", "error", err)
		return models.IncomingMessage{}, false
	}

	msg := models.IncomingMessage{
		From: from,
		Time: evt.Info.Timestamp,
	}

	raw := evt.Message
	switch {
	case raw.GetButtonsResponseMessage() != nil:
		br := raw.GetButtonsResponseMessage()
		msg.Kind = models.MessageKindButtonReply
		msg.Selection = br.GetSelectedButtonID()
		msg.Text = br.GetSelectedDisplayText()

	case raw.GetTemplateButtonReplyMessage() != nil:
		tr := raw.GetTemplateButtonReplyMessage()
		msg.Kind = models.MessageKindButtonReply
		msg.Selection = tr.GetSelectedID()
		msg.Text = tr.GetSelectedDisplayText()

	case raw.GetListResponseMessage() != nil:
		lr := raw.GetListResponseMessage()
		msg.Kind = models.MessageKindListReply
		msg.Selection = lr.GetSingleSelectReply().GetSelectedRowID()
		msg.Text = lr.GetTitle()

	case raw.GetLocationMessage() != nil:
		loc := raw.GetLocationMessage()
		msg.Kind = models.MessageKindLocation
		msg.Location = &models.Coordinates{
			Latitude:  loc.GetDegreesLatitude(),
			Longitude: loc.GetDegreesLongitude(),
		}

	case raw.GetImageMessage() != nil:
		im := raw.GetImageMessage()
		msg.Kind = models.MessageKindImage
		msg.Text = im.GetCaption()
		if mediaStore != nil {
			msg.Media = mediaStore.Register(im, im.GetMimetype())
		}

	case raw.GetDocumentMessage() != nil:
		doc := raw.GetDocumentMessage()
		msg.Kind = models.MessageKindDocument
		msg.Text = doc.GetCaption()
		if mediaStore != nil {
			msg.Media = mediaStore.Register(doc, doc.GetMimetype())
		}

	case raw.GetConversation() != "":
		msg.Kind = models.MessageKindText
		msg.Text = raw.GetConversation()

	case raw.GetExtendedTextMessage().GetText() != "":
		msg.Kind = models.MessageKindText
		msg.Text = raw.GetExtendedTextMessage().GetText()

	default:
		msg.Kind = models.MessageKindUnsupported
		slog.Debug("Normalized unsupported message kind", "from", util.MaskPhone(from))
	}

	return msg, true
}
