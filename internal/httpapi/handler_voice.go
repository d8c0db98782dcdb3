package httpapi

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go/twiml"

	"marta-relay/internal/mediastream"
)

// MediaStreamPath is where Twilio opens the Media Streams WebSocket.
const MediaStreamPath = "/media-stream"

// VoiceHandler answers Twilio's incoming-call webhook with TwiML that
// connects the call to the media stream. The call id and caller number
// travel as <Parameter>s and come back in the stream's start event.
func VoiceHandler(publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		callSID := r.PostFormValue("CallSid")
		caller := r.PostFormValue("From")

		// <Connect><Stream> rejects the track attribute, so none is set.
		stream := twiml.VoiceStream{
			Url: StreamURL(publicURL, r),
			InnerElements: []twiml.Element{
				twiml.VoiceParameter{Name: mediastream.ParamCallSID, Value: callSID},
				twiml.VoiceParameter{Name: mediastream.ParamCallerNumber, Value: caller},
			},
		}
		connect := twiml.VoiceConnect{
			InnerElements: []twiml.Element{stream},
		}

		doc, err := twiml.Voice([]twiml.Element{connect})
		if err != nil {
			slog.Error("failed to build twiml", "call_sid", callSID, "error", err)
			http.Error(w, "twiml error", http.StatusInternalServerError)
			return
		}

		slog.Info("incoming call", "call_sid", callSID, "caller", caller)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(doc))
	}
}

// StreamURL is the wss:// address of the media stream, taken from
// publicURL when set and from the request host otherwise.
func StreamURL(publicURL string, r *http.Request) string {
	if publicURL != "" {
		if u, err := url.Parse(strings.TrimRight(publicURL, "/")); err == nil && u.Host != "" {
			u.Scheme = "wss"
			u.Path = strings.TrimRight(u.Path, "/") + MediaStreamPath
			u.RawQuery = ""
			return u.String()
		}
		slog.Warn("invalid public_url, using request host", "public_url", publicURL)
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return "wss://" + host + MediaStreamPath
}
