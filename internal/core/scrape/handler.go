package scrape

import (
	"bufio"
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"profilescraper/internal/core/model"
	"profilescraper/internal/core/supervisor"
	"profilescraper/internal/logger"
)

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, log: logger.New("ScrapeHandler")}
}

type CreateRequest struct {
	Profile string `json:"profile"`
	Mode    string `json:"mode,omitempty"`
}

type CreateResponse struct {
	Success  bool               `json:"success"`
	Profile  string             `json:"profile"`
	Status   string             `json:"status"`
	Posts    []model.PostRecord `json:"posts,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}

// Event is one NDJSON line of a streamed scrape.
type Event struct {
	Type     string             `json:"type"`
	Data     string             `json:"data,omitempty"`
	Posts    []model.PostRecord `json:"posts,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Error    string             `json:"error,omitempty"`
	Kind     string             `json:"kind,omitempty"`
	Detail   string             `json:"detail,omitempty"`
}

const (
	EventStdout = "stdout"
	EventStderr = "stderr"
	EventResult = "result"
	EventError  = "error"
)

// StatusOf maps an error to the HTTP status the boundary answers with.
func StatusOf(err error) int {
	switch model.KindOf(err) {
	case model.ErrInvalidRequest:
		return fiber.StatusBadRequest
	case model.ErrConflict:
		return fiber.StatusConflict
	case model.ErrTimeout:
		return fiber.StatusGatewayTimeout
	case model.ErrArtifactMissing, model.ErrArtifactRead:
		return fiber.StatusBadGateway
	case model.ErrStorage:
		return fiber.StatusServiceUnavailable
	case model.ErrNoData:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func errorBody(err error) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Kind:    model.Code(err),
		Detail:  logger.StripANSI(model.DetailOf(err)),
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	return c.Status(StatusOf(err)).JSON(errorBody(err))
}

// Register mounts the scrape routes on r.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/scrape", h.HandleCreate)
	r.Get("/scrape/:profile", h.HandleGet)
	r.Get("/scrape/:profile/job", h.HandleJob)
	r.Get("/posts", h.HandleAll)
}

// HandleCreate starts a scrape. The answer depends on the mode: posts for
// sync, NDJSON events for stream and 202 for async.
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, model.NewError(model.ErrInvalidRequest, "invalid body", err))
	}
	mode := h.service.DefaultMode()
	if req.Mode != "" {
		m, err := ParseMode(req.Mode)
		if err != nil {
			return h.fail(c, model.NewError(model.ErrInvalidRequest, err.Error(), nil))
		}
		mode = m
	}

	reservation, err := h.service.Reserve(c.UserContext(), req.Profile)
	if err != nil {
		return h.fail(c, err)
	}

	if mode == ModeStream {
		h.stream(c, reservation)
		return nil
	}

	res, err := reservation.Run(c.UserContext(), mode, nil)
	if err != nil {
		h.log.LogWarnf("scrape %s failed: %v", req.Profile, err)
		return h.fail(c, err)
	}
	if res.Accepted {
		return c.Status(fiber.StatusAccepted).JSON(CreateResponse{
			Success: true,
			Profile: res.Profile,
			Status:  "accepted",
		})
	}
	return c.JSON(CreateResponse{
		Success:  true,
		Profile:  res.Profile,
		Status:   string(model.StateResolved),
		Posts:    res.Posts,
		Warnings: res.Warnings,
	})
}

// stream answers with worker output as it arrives followed by a final result
// or error event. The job keeps running if the client goes away.
func (h *Handler) stream(c *fiber.Ctx, r *Reservation) {
	events := make(chan Event, streamBuffer)
	final := make(chan Event, 1)

	go func() {
		res, err := r.Run(context.Background(), ModeStream, streamSink(events))
		if err != nil {
			body := errorBody(err)
			final <- Event{Type: EventError, Error: body.Error, Kind: body.Kind, Detail: body.Detail}
			return
		}
		final <- Event{Type: EventResult, Posts: res.Posts, Warnings: res.Warnings}
	}()

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		broken := false
		write := func(ev Event) {
			if broken {
				return
			}
			err := enc.Encode(ev)
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				broken = true
				h.log.LogWarnf("stream client for %s went away", r.Profile())
			}
		}
		for {
			select {
			case ev := <-events:
				write(ev)
			case last := <-final:
				for {
					select {
					case ev := <-events:
						write(ev)
					default:
						write(last)
						return
					}
				}
			}
		}
	})
}

const streamBuffer = 256

// streamSink forwards output chunks as events without ever blocking the
// worker. Chunks that find the buffer full are dropped from the stream; the
// complete output is still captured by the supervisor.
func streamSink(events chan<- Event) supervisor.Sink {
	return func(stream supervisor.Stream, chunk []byte) {
		typ := EventStdout
		if stream == supervisor.StreamStderr {
			typ = EventStderr
		}
		select {
		case events <- Event{Type: typ, Data: string(chunk)}:
		default:
		}
	}
}

// HandleGet returns the stored posts of a profile.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	doc, err := h.service.PostsOf(c.UserContext(), c.Params("profile"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// HandleJob returns the latest job state of a profile.
func (h *Handler) HandleJob(c *fiber.Ctx) error {
	j, err := h.service.JobOf(c.UserContext(), c.Params("profile"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(j)
}

// HandleAll returns every stored profile document.
func (h *Handler) HandleAll(c *fiber.Ctx) error {
	docs, err := h.service.AllPosts(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(docs)
}
