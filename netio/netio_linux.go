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

// setKeepAliveInterval sets the Linux-specific keepalive probe interval
// socket option, mirroring timestamp_linux.go's pattern of an
// OS-specific sibling file for option constants that differ by
// platform.
func setKeepAliveInterval(fd int, interval time.Duration) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(interval/time.Second))
}
