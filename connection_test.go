/*
 * Copyright 2024 ScopeDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quarry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scopedb/quarry-go/internal/pool"
	"github.com/scopedb/quarry-go/internal/rpc"
)

func TestTranslateError_ClassifiedErrorsBecomePublicTypes(t *testing.T) {
	var authDenied *AuthDeniedError
	require.ErrorAs(t, translateError(&rpc.AuthDeniedError{Message: "Access denied"}), &authDenied)
	require.Equal(t, "Access denied", authDenied.Message)

	var wrongTag *WrongTagError
	require.ErrorAs(t, translateError(&rpc.WrongTagError{Message: "status: 456"}), &wrongTag)
	require.Equal(t, "status: 456", wrongTag.Message)
}

func TestTranslateError_TransportErrorsWrapCause(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "transport is closing")
	err := translateError(unavailable)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.ErrorIs(t, err, unavailable)

	err = translateError(context.DeadlineExceeded)
	require.ErrorAs(t, err, &transportErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTranslateError_AlreadyPublicTypesPassThroughUnchanged(t *testing.T) {
	decodeErr := &DecodeError{Message: "bad decimal"}
	require.Same(t, error(decodeErr), translateError(decodeErr))

	poolExhausted := &pool.PoolExhaustedError{Waited: "1s"}
	require.Same(t, error(poolExhausted), translateError(poolExhausted))

	poolClosed := &pool.PoolClosedError{}
	require.Same(t, error(poolClosed), translateError(poolClosed))
}

func TestTranslateError_UnclassifiedNonTransportErrorPassesThrough(t *testing.T) {
	invalidArg := status.Error(codes.InvalidArgument, "bad query")
	require.Same(t, invalidArg, translateError(invalidArg))

	plain := errors.New("boom")
	require.Same(t, plain, translateError(plain))
}
