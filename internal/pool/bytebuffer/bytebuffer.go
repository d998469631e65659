// Copyright (c) 2019 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bytebuffer 是 bytebufferpool 的薄封装，编码器与解压缩输出共用同一个池。
package bytebuffer

import "github.com/valyala/bytebufferpool"

// ByteBuffer 是 bytebufferpool.ByteBuffer 的别名。
type ByteBuffer = bytebufferpool.ByteBuffer

var (
	// Get 从池中取出一个空缓冲区。
	Get = bytebufferpool.Get
	// Put 把缓冲区归还到池中，nil 会被忽略。
	Put = func(b *ByteBuffer) {
		if b != nil {
			bytebufferpool.Put(b)
		}
	}
)
