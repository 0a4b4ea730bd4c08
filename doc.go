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

// Package quarry is a Go client for a distributed SQL engine that runs two
// parallel deployments behind a single endpoint.
//
// The client discovers and follows the engine's active deployment tag,
// pools RPC channels across goroutines, and decodes the engine's columnar
// result chunks into Go values. Applications interact with a thin
// Connection façade; the deployment-tag coordination, channel pooling, and
// chunk decoding happen underneath it.
package quarry
