// Package speed implements the "bench" command-line option, similar to
// "openssl speed". It benchmarks the primitives codn's wire format fixes
// in place: Argon2id key derivation, BLAKE2s-keyed imprints, and ChaCha20
// blob encryption -- there is no backend table to print, because codn's
// format does not let an implementation choose one (spec §4.1).
package speed

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/rtmigo/codn/internal/blob"
	"github.com/rtmigo/codn/internal/cpudetection"
	"github.com/rtmigo/codn/internal/common"
	"github.com/rtmigo/codn/internal/cryptocore"
	"github.com/rtmigo/codn/internal/imprint"
	"github.com/rtmigo/codn/internal/kdf"
)

// Run runs the benchmark suite and prints the results.
func Run() {
	cd := cpudetection.New()
	fmt.Printf("cpu: %s\n", cd.String())

	fmt.Printf("%-28s\t", "argon2id-derive")
	printResult(testing.Benchmark(bKDFDerive))

	fmt.Printf("%-28s\t", "blake2s-imprint-generate")
	printResult(testing.Benchmark(bImprintGenerate))

	fmt.Printf("%-28s\t", "blake2s-imprint-verify")
	printResult(testing.Benchmark(bImprintVerify))

	fmt.Printf("%-28s\t", "chacha20-blob-encrypt")
	printResult(testing.Benchmark(bBlobEncrypt))

	fmt.Printf("%-28s\t", "chacha20-blob-decode")
	printResult(testing.Benchmark(bBlobDecode))
}

func printResult(r testing.BenchmarkResult) {
	if r.Bytes > 0 {
		mbs := (float64(r.Bytes) * float64(r.N) / 1e6) / r.T.Seconds()
		fmt.Printf("%7.2f MB/s\n", mbs)
		return
	}
	perOp := r.T / time.Duration(max(r.N, 1))
	fmt.Printf("%10s / op\n", perOp)
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		log.Panic("speed: rand.Read failed: " + err.Error())
	}
	return b
}

// bKDFDerive benchmarks the fixed-cost Argon2id derivation. Its "speed" is
// intentionally slow -- this is the benchmark an operator runs to see how
// long a single unlock takes on their hardware, not a throughput number.
func bKDFDerive(b *testing.B) {
	salt := randBytes(common.KeySaltSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kdf.Derive("benchmark-codename", salt)
	}
}

func bImprintGenerate(b *testing.B) {
	cnk := randBytes(common.CodenameKeySize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := imprint.Generate(cnk); err != nil {
			b.Fatal(err)
		}
	}
}

func bImprintVerify(b *testing.B) {
	cnk := randBytes(common.CodenameKeySize)
	imp, err := imprint.Generate(cnk)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		imprint.Verify(cnk, imp)
	}
}

func bBlobEncrypt(b *testing.B) {
	cnk := randBytes(common.CodenameKeySize)
	rng := cryptocore.NewRandPool()
	body := randBytes(4096)
	b.SetBytes(int64(len(body)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		err := blob.Encrypt(&buf, blob.EncodeParams{
			CNK: cnk, DataVersion: 1, FullSize: uint32(len(body)), PartsLen: 1, PartIdx: 0,
		}, body, common.ClusterSize, rng)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func bBlobDecode(b *testing.B) {
	cnk := randBytes(common.CodenameKeySize)
	rng := cryptocore.NewRandPool()
	body := randBytes(4096)
	var buf bytes.Buffer
	if err := blob.Encrypt(&buf, blob.EncodeParams{
		CNK: cnk, DataVersion: 1, FullSize: uint32(len(body)), PartsLen: 1, PartIdx: 0,
	}, body, common.ClusterSize, rng); err != nil {
		b.Fatal(err)
	}
	raw := buf.Bytes()

	b.SetBytes(int64(len(body)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d := blob.NewDecoder(cnk, raw)
		if _, err := d.ReadData(); err != nil {
			b.Fatal(err)
		}
	}
}
