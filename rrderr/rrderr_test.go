// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package rrderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(KindInvalidTimestamp, "rrd.Database.Update", nil)
	require.True(t, Is(err, KindInvalidTimestamp))
	require.False(t, Is(err, KindIo))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindIo, "backend.Memory.Read", cause)
	require.ErrorIs(t, err, cause)
}

func TestWrapfFormatsCause(t *testing.T) {
	err := Wrapf(KindBadRpn, "rpn.Expr.Eval", "unknown token %q", "FOO")
	require.Equal(t, KindBadRpn, KindOf(err))
	require.Contains(t, err.Error(), "FOO")
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))
}
