// Copyright 2025 UMH Systems GmbH
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

package statecodec_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"math"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/faces-core/pkg/constants"
	"github.com/united-manufacturing-hub/faces-core/pkg/statecodec"
)

var secret = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, statecodec.KeySize))

var _ = Describe("Codec", func() {
	payload := []byte(strings.Repeat(`{"id":"f:name","value":"Ann"}`, 40))

	DescribeTable("round trips",
		func(cfg statecodec.Config) {
			codec, err := statecodec.New(cfg, nil)
			Expect(err).NotTo(HaveOccurred())

			token, err := codec.Encode(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(ContainSubstring("+"))
			Expect(token).NotTo(ContainSubstring("/"))

			out, err := codec.Decode(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(payload))
		},
		Entry("plain", statecodec.Config{}),
		Entry("gzip", statecodec.Config{Compression: statecodec.CompressionGzip}),
		Entry("zstd", statecodec.Config{Compression: statecodec.CompressionZstd}),
		Entry("aes with derived mac key", statecodec.Config{Encrypt: true, Secret: secret}),
		Entry("aes, gzip and sha3", statecodec.Config{
			Encrypt: true, Secret: secret, Compression: statecodec.CompressionGzip, MACAlgorithm: statecodec.MACHmacSHA3256,
		}),
		Entry("xchacha20 and zstd", statecodec.Config{
			Encrypt: true, Secret: secret, Algorithm: statecodec.AlgorithmXChaCha20, Compression: statecodec.CompressionZstd,
		}),
		Entry("generated secret", statecodec.Config{Encrypt: true}),
	)

	It("compresses deterministically with gzip", func() {
		codec, err := statecodec.New(statecodec.Config{Compression: statecodec.CompressionGzip}, nil)
		Expect(err).NotTo(HaveOccurred())

		a, err := codec.Encode(payload)
		Expect(err).NotTo(HaveOccurred())
		b, err := codec.Encode(payload)
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(Equal(b))
		Expect(len(a)).To(BeNumerically("<", len(payload)))
	})

	It("uses the stateless token for transient views without touching the cipher", func() {
		codec, err := statecodec.New(statecodec.Config{Encrypt: true, Secret: secret}, nil)
		Expect(err).NotTo(HaveOccurred())

		token, err := codec.EncodeView(payload, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal(constants.StatelessToken))

		again, err := codec.EncodeView([]byte("other"), true)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(token))

		out, err := codec.Decode(constants.StatelessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())
	})

	It("rejects tampered tokens as integrity failures", func() {
		codec, err := statecodec.New(statecodec.Config{Encrypt: true, Secret: secret}, nil)
		Expect(err).NotTo(HaveOccurred())

		token, err := codec.Encode(payload)
		Expect(err).NotTo(HaveOccurred())

		raw, err := base64.RawURLEncoding.DecodeString(token)
		Expect(err).NotTo(HaveOccurred())
		raw[len(raw)/2] ^= 0x01

		out, err := codec.Decode(base64.RawURLEncoding.EncodeToString(raw))
		Expect(out).To(BeNil())
		Expect(err).To(MatchError(statecodec.ErrDecode))
		Expect(err).To(MatchError(statecodec.ErrIntegrity))

		var de *statecodec.DecodeError
		Expect(err).To(BeAssignableToTypeOf(de))
	})

	It("rejects tokens sealed with another secret", func() {
		a, err := statecodec.New(statecodec.Config{Encrypt: true, Secret: secret}, nil)
		Expect(err).NotTo(HaveOccurred())
		b, err := statecodec.New(statecodec.Config{Encrypt: true}, nil)
		Expect(err).NotTo(HaveOccurred())

		token, err := a.Encode(payload)
		Expect(err).NotTo(HaveOccurred())

		_, err = b.Decode(token)
		Expect(err).To(MatchError(statecodec.ErrIntegrity))
	})

	It("rejects malformed tokens", func() {
		codec, err := statecodec.New(statecodec.Config{Encrypt: true, Secret: secret}, nil)
		Expect(err).NotTo(HaveOccurred())

		for _, token := range []string{"%%%", "abc", "ü€"} {
			out, err := codec.Decode(token)
			Expect(out).To(BeNil())
			Expect(err).To(MatchError(statecodec.ErrDecode))
		}
	})

	It("rejects bad configuration", func() {
		_, err := statecodec.New(statecodec.Config{Compression: "lz4"}, nil)
		Expect(err).To(HaveOccurred())

		_, err = statecodec.New(statecodec.Config{Encrypt: true, Secret: base64.StdEncoding.EncodeToString([]byte("short"))}, nil)
		Expect(err).To(HaveOccurred())

		_, err = statecodec.New(statecodec.Config{Encrypt: true, Secret: secret, Algorithm: "des"}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("seals without compressing", func() {
		codec, err := statecodec.New(statecodec.Config{Encrypt: true, Secret: secret, Compression: statecodec.CompressionGzip}, nil)
		Expect(err).NotTo(HaveOccurred())

		token, err := codec.Seal([]byte("42"))
		Expect(err).NotTo(HaveOccurred())

		out, err := codec.Open(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]byte("42")))
	})
})

var _ = Describe("Key factories", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("counts from 1 and round trips through base 36", func() {
		store := newMemoryStore()
		f := statecodec.CounterKeyFactory{}

		first, err := f.Generate(ctx, store, "/index.xhtml")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Counter()).To(Equal(int32(1)))

		var k statecodec.Key
		for i := 0; i < 3; i++ {
			k, err = f.Generate(ctx, store, "/index.xhtml")
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(k.Counter()).To(Equal(int32(4)))

		token := f.Encode(k)
		Expect(token).To(Equal("4"))

		decoded, err := f.Decode("/index.xhtml", token)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Equal(k)).To(BeTrue())
		Expect(decoded.Equal(statecodec.NewCounterKey("/other.xhtml", 4))).To(BeFalse())
	})

	It("encodes large counters compactly", func() {
		f := statecodec.CounterKeyFactory{}
		k := statecodec.NewCounterKey("/a.xhtml", 1295)

		Expect(f.Encode(k)).To(Equal("zz"))
	})

	It("wraps from the largest counter back to 1", func() {
		store := newMemoryStore()
		store.SetAttr(statecodec.CounterAttr, int32(math.MaxInt32))

		k, err := statecodec.CounterKeyFactory{}.Generate(ctx, store, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Counter()).To(Equal(int32(1)))
	})

	It("never hands out the same counter twice under concurrency", func() {
		store := newMemoryStore()
		f := statecodec.CounterKeyFactory{}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = map[int32]bool{}
		)

		for i := 0; i < 8; i++ {
			wg.Add(1)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for j := 0; j < 100; j++ {
					k, err := f.Generate(ctx, store, "/a.xhtml")
					Expect(err).NotTo(HaveOccurred())

					mu.Lock()
					Expect(seen).NotTo(HaveKey(k.Counter()))
					seen[k.Counter()] = true
					mu.Unlock()
				}
			}()
		}

		wg.Wait()
		Expect(seen).To(HaveLen(800))
	})

	It("rejects undecodable counter keys", func() {
		_, err := statecodec.CounterKeyFactory{}.Decode("/a.xhtml", "not a key")
		Expect(err).To(MatchError(statecodec.ErrDecode))
	})

	It("generates random keys", func() {
		f := statecodec.RandomKeyFactory{}

		a, err := f.Generate(ctx, nil, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())
		b, err := f.Generate(ctx, nil, "/a.xhtml")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Equal(b)).To(BeFalse())
		Expect(a.Bytes()).To(HaveLen(16))

		decoded, err := f.Decode("/a.xhtml", f.Encode(a))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Equal(a)).To(BeTrue())
		Expect(decoded.String()).To(Equal(a.String()))
	})
})
