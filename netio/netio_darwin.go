/*
Copyright (c) The anyrpc Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package netio

import (
	"time"

	"golang.org/x/sys/unix"
)

// setKeepAliveInterval sets the Darwin-specific keepalive probe
// interval socket option (TCP_KEEPALIVE rather than Linux's
// TCP_KEEPINTVL), mirroring timestamp_darwin.go's sibling-file split.
func setKeepAliveInterval(fd int, interval time.Duration) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, int(interval/time.Second))
}
