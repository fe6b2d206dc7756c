package recognizer

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
)

const (
	natsHeaderPrefix = "Ocr-"
	queueGroup       = "ocr-service"
)

// RegisterNatsService exposes the recognizer as NATS micro service "ocr".
// The request payload of the recognize endpoint is the encoded image, options are
// passed as headers (Ocr-Format, Ocr-Langs, Ocr-Psm, Ocr-Whitelist, Ocr-No-Cache).
func (r *Recognizer) RegisterNatsService(nc *nats.Conn, version string) (micro.Service, error) {
	svc, err := micro.AddService(nc, micro.Config{
		Name:        "ocr",
		Version:     version,
		Description: "Returns the text content of images",
	})
	if err != nil {
		return nil, err
	}
	if err := svc.AddEndpoint("recognize",
		micro.HandlerFunc(r.handleRecognize),
		micro.WithEndpointQueueGroup(queueGroup)); err != nil {
		return nil, err
	}
	if err := svc.AddEndpoint("languages",
		micro.HandlerFunc(r.handleLanguages),
		micro.WithEndpointQueueGroup(queueGroup)); err != nil {
		return nil, err
	}
	return svc, nil
}

func optionsFromHeaders(h micro.Headers) Options {
	noCache, _ := strconv.ParseBool(h.Get(natsHeaderPrefix + "No-Cache"))
	return Options{
		Format:    h.Get(natsHeaderPrefix + "Format"),
		Langs:     h.Get(natsHeaderPrefix + "Langs"),
		PSM:       h.Get(natsHeaderPrefix + "Psm"),
		Whitelist: h.Get(natsHeaderPrefix + "Whitelist"),
		NoCache:   noCache,
	}
}

func (r *Recognizer) handleRecognize(req micro.Request) {
	opts := optionsFromHeaders(req.Headers())
	r.log.Info("Received Nats request", "subject", req.Subject(), "options", opts, "size", len(req.Data()))
	res, err := r.Recognize(context.Background(), req.Data(), opts)
	if err != nil {
		req.Error(strconv.Itoa(HTTPStatus(err)), err.Error(), nil)
		return
	}
	header := micro.Headers{}
	for k, v := range res.Metadata() {
		header[http.CanonicalHeaderKey(natsHeaderPrefix+k)] = []string{v}
	}
	req.Respond([]byte(res.Text), micro.WithHeaders(header))
}

func (r *Recognizer) handleLanguages(req micro.Request) {
	def, available := r.Languages()
	b, err := json.Marshal(map[string]any{"default": def, "available": available})
	if err != nil {
		req.Error("500", err.Error(), nil)
		return
	}
	req.Respond(b)
}
