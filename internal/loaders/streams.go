package loaders

import (
	"context"
	"fmt"
	"net/http"
)

// Dashboard is the landing page of a signed-in user.
func (l *Loaders) Dashboard(_ context.Context, req *Request) (Outcome, error) {
	if req.User == nil {
		return toLogin(http.StatusTemporaryRedirect), nil
	}
	return Data{"user": req.User}, nil
}

// StreamsLayout loads the signed-in user's streams. With a stream_id route
// parameter the query is scoped to that stream and active_stream_id is set.
func (l *Loaders) StreamsLayout(ctx context.Context, req *Request) (Outcome, error) {
	if req.User == nil {
		return toLogin(http.StatusTemporaryRedirect), nil
	}
	if req.Token == "" {
		return unauthorized(), nil
	}

	streamID := req.Param("stream_id")
	streams, err := l.api.GetStreamsByToken(ctx, req.Token, streamID)
	if err != nil {
		return nil, fmt.Errorf("load streams: %w", err)
	}

	data := Data{"user": req.User, "streams": streams}
	if streamID != "" {
		data["active_stream_id"] = streamID
	}
	return data, nil
}

// StreamPage loads one stream of the session user and its events.
func (l *Loaders) StreamPage(ctx context.Context, req *Request) (Outcome, error) {
	if req.User == nil {
		return unauthorized(), nil
	}
	return l.streamWithEvents(ctx, req, req.User.Username)
}

// PublicStreamPage loads a stream without a session; the event owner comes
// from the username route parameter.
func (l *Loaders) PublicStreamPage(ctx context.Context, req *Request) (Outcome, error) {
	return l.streamWithEvents(ctx, req, req.Param("username"))
}

func (l *Loaders) streamWithEvents(ctx context.Context, req *Request, username string) (Outcome, error) {
	if req.Token == "" {
		return unauthorized(), nil
	}

	streams, err := l.api.GetStreamsByToken(ctx, req.Token, req.Param("stream_id"))
	if err != nil {
		return nil, fmt.Errorf("load stream: %w", err)
	}
	if len(streams) == 0 {
		return notFound(), nil
	}
	stream := streams[0]

	events, err := l.api.GetEventsByDate(ctx, req.Token, username, stream.StartTime, stream.EndTime)
	if err != nil {
		return nil, fmt.Errorf("load events for stream %s: %w", stream.ID, err)
	}
	return Data{"stream": stream, "events": events}, nil
}
