package blob

import (
	"errors"
	"testing"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/apperr"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/models"
)

func TestCheckSize(t *testing.T) {
	cases := []struct {
		msgType string
		size    int64
		ok      bool
	}{
		{models.TypeImage, 4 << 20, true},
		{models.TypeImage, 6 << 20, false},
		{models.TypeAudio, 10 << 20, true},
		{models.TypeAudio, 11 << 20, false},
		{models.TypeVideo, 50 << 20, true},
		{models.TypeVideo, 51 << 20, false},
		{models.TypeFile, 20 << 20, true},
		{models.TypeFile, 21 << 20, false},
		{models.TypeText, 1, false},
	}
	for _, tc := range cases {
		err := CheckSize(tc.msgType, tc.size)
		if tc.ok && err != nil {
			t.Errorf("CheckSize(%s, %d): unexpected error %v", tc.msgType, tc.size, err)
		}
		if !tc.ok {
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("CheckSize(%s, %d): expected ErrValidation, got %v", tc.msgType, tc.size, err)
			}
		}
	}
}
