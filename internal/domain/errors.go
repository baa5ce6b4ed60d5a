package domain

import "errors"

var ErrInvalidCoordinates = errors.New("latitude must be in [-90,90] and longitude in [-180,180]")
