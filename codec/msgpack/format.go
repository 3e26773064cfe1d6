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

// Package msgpack implements a hand-written MessagePack reader and
// writer over the stream/event abstractions, grounded on
// src/messagepack/messagepackreader.cpp / messagepackwriter.cpp and
// cross-checked against the wire-format tables documented in
// hashicorp/go-msgpack's codec package. It does not use a third-party
// msgpack package: the reader must push events into an event.Sink with
// in-situ aliasing, which no off-the-shelf msgpack decoder exposes.
package msgpack

// Leading-byte format markers, exactly the values from the original's
// MessagePackFormat.h.
const (
	posFixIntMax byte = 0x7f
	fixMap       byte = 0x80
	fixMapMask   byte = 0x8f
	fixArray     byte = 0x90
	fixArrayMask byte = 0x9f
	fixStr       byte = 0xa0
	fixStrMask   byte = 0xbf
	nilByte      byte = 0xc0
	falseByte    byte = 0xc2
	trueByte     byte = 0xc3
	bin8         byte = 0xc4
	bin16        byte = 0xc5
	bin32        byte = 0xc6
	ext8         byte = 0xc7
	ext16        byte = 0xc8
	ext32        byte = 0xc9
	float32Byte  byte = 0xca
	float64Byte  byte = 0xcb
	uint8Byte    byte = 0xcc
	uint16Byte   byte = 0xcd
	uint32Byte   byte = 0xce
	uint64Byte   byte = 0xcf
	int8Byte     byte = 0xd0
	int16Byte    byte = 0xd1
	int32Byte    byte = 0xd2
	int64Byte    byte = 0xd3
	fixExt1      byte = 0xd4
	fixExt2      byte = 0xd5
	fixExt4      byte = 0xd6
	fixExt8      byte = 0xd7
	fixExt16     byte = 0xd8
	str8         byte = 0xd9
	str16        byte = 0xda
	str32        byte = 0xdb
	array16      byte = 0xdc
	array32      byte = 0xdd
	map16        byte = 0xde
	map32        byte = 0xdf
	negFixIntMin byte = 0xe0
)
