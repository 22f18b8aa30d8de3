package streamchat

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	stream "github.com/GetStream/stream-chat-go/v7"
	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/stretchr/testify/require"
)

func TestClassify_NotFound(t *testing.T) {
	cases := map[string]error{
		"status code": stream.Error{StatusCode: http.StatusNotFound, Message: "DeleteUser failed"},
		"api code":    stream.Error{Code: codeDoesNotExist, StatusCode: http.StatusBadRequest},
		"message":     stream.Error{StatusCode: http.StatusBadRequest, Message: "User with id u1 does not exist"},
		"pointer":     &stream.Error{StatusCode: http.StatusNotFound},
		"wrapped":     fmt.Errorf("request: %w", stream.Error{StatusCode: http.StatusNotFound}),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, classify(in), chat.ErrNotFound)
		})
	}
}

func TestClassify_OtherErrorsPassThrough(t *testing.T) {
	req := require.New(t)

	req.NoError(classify(nil))

	rateLimited := stream.Error{StatusCode: http.StatusTooManyRequests, Code: 9, Message: "too many requests"}
	req.NotErrorIs(classify(rateLimited), chat.ErrNotFound)

	plain := errors.New("connection reset")
	req.Equal(plain, classify(plain))
}
