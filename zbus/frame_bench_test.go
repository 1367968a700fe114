package zbus

import "testing"

func BenchmarkEncodeFrame_Write(b *testing.B) {
	tx := WriteTx(0x21, 0x54, SelectAll)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = EncodeFrame(tx)
	}
}

func BenchmarkDecodeFrame_Write(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = DecodeFrame("7_f_00000021_00000054")
	}
}

func BenchmarkDecodeStatus(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		st, _ := DecodeStatus("3deadbeef")
		_, _ = st.Payload()
	}
}
