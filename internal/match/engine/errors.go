package engine

import (
	"strconv"

	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

func errSeatsMismatch(got, want int) error {
	return apperrors.WithMetadata(apperrors.CodeMatchSeatsInvalid,
		"seat roster does not match player count",
		map[string]string{"seats": strconv.Itoa(got), "player_count": strconv.Itoa(want)})
}

func errSeatIndexGap(seat int) error {
	return apperrors.WithMetadata(apperrors.CodeMatchSeatsInvalid,
		"seat indexes must be contiguous from zero",
		map[string]string{"seat": strconv.Itoa(seat)})
}

func errSeatNameEmpty(seat int) error {
	return apperrors.WithMetadata(apperrors.CodeMatchPlayerNameEmpty,
		"seat display name is required",
		map[string]string{"seat": strconv.Itoa(seat)})
}

func errProviderMissing(seat int) error {
	return apperrors.WithMetadata(apperrors.CodeMatchProviderMissing,
		"automated seat requires a provider identifier",
		map[string]string{"seat": strconv.Itoa(seat)})
}
