//go:build cgo
// +build cgo

// Package test_utils provides native functions for exercising the bridge in
// tests.  Each function counts its calls so tests can assert that no native
// call was made.
package test_utils

/*
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>

static int add_calls;
static int connect_calls;
static int record_calls;
static int null_calls;

static int64_t record_a;
static int64_t record_b;
static double record_ld;
static char record_str[128];
static int last_was_null = -1;

static int add(int a, int b) {
	__sync_fetch_and_add(&add_calls, 1);
	return a + b;
}

static char* connect_str(const char* a, const char* b) {
	size_t la = strlen(a), lb = strlen(b);
	char* out = (char*)malloc(la + lb + 1);
	__sync_fetch_and_add(&connect_calls, 1);
	memcpy(out, a, la);
	memcpy(out + la, b, lb + 1);
	return out;
}

static void free_str(char* s) {
	// Scribble first so a result aliasing this buffer would be noticed.
	memset(s, 'X', strlen(s));
	free(s);
}

static void record_int64s(int64_t a, int64_t b) {
	record_calls++;
	record_a = a;
	record_b = b;
}

static void record_longdouble(long double x) {
	record_calls++;
	record_ld = (double)x;
}

static void record_string(const char* s) {
	record_calls++;
	strncpy(record_str, s, sizeof(record_str) - 1);
	record_str[sizeof(record_str) - 1] = 0;
}

static int is_null(void* p) {
	null_calls++;
	last_was_null = p == NULL;
	return last_was_null;
}

static double scale(double x, float by) { return x * by; }
static float halve(float x) { return x / 2; }
static signed char negate_schar(signed char c) { return -c; }
static short negate_short(short v) { return -v; }
static unsigned char echo_uchar(unsigned char c) { return c; }
static unsigned short echo_ushort(unsigned short v) { return v; }
static unsigned int echo_uint(unsigned int v) { return v; }
static long echo_long(long v) { return v; }
static int8_t echo_int8(int8_t v) { return v; }
static uint64_t echo_uint64(uint64_t v) { return v; }
static void* echo_ptr(void* p) { return p; }
static char* null_str(void) { return NULL; }

static char static_buf[64];

static char* static_str(const char* a, const char* b) {
	memset(static_buf, 'X', sizeof(static_buf) - 1);
	static_buf[sizeof(static_buf) - 1] = 0;
	snprintf(static_buf, sizeof(static_buf), "%s%s", a, b);
	return static_buf;
}

static void* fn_add(void) { return (void*)&add; }
static void* fn_connect_str(void) { return (void*)&connect_str; }
static void* fn_free_str(void) { return (void*)&free_str; }
static void* fn_record_int64s(void) { return (void*)&record_int64s; }
static void* fn_record_longdouble(void) { return (void*)&record_longdouble; }
static void* fn_record_string(void) { return (void*)&record_string; }
static void* fn_is_null(void) { return (void*)&is_null; }
static void* fn_scale(void) { return (void*)&scale; }
static void* fn_halve(void) { return (void*)&halve; }
static void* fn_negate_schar(void) { return (void*)&negate_schar; }
static void* fn_negate_short(void) { return (void*)&negate_short; }
static void* fn_echo_uchar(void) { return (void*)&echo_uchar; }
static void* fn_echo_ushort(void) { return (void*)&echo_ushort; }
static void* fn_echo_uint(void) { return (void*)&echo_uint; }
static void* fn_echo_long(void) { return (void*)&echo_long; }
static void* fn_echo_int8(void) { return (void*)&echo_int8; }
static void* fn_echo_uint64(void) { return (void*)&echo_uint64; }
static void* fn_echo_ptr(void) { return (void*)&echo_ptr; }
static void* fn_null_str(void) { return (void*)&null_str; }
static void* fn_static_str(void) { return (void*)&static_str; }

static int get_add_calls(void) { return __sync_fetch_and_add(&add_calls, 0); }
static int get_connect_calls(void) { return __sync_fetch_and_add(&connect_calls, 0); }
static int get_record_calls(void) { return record_calls; }
static int get_null_calls(void) { return null_calls; }
static int get_last_was_null(void) { return last_was_null; }
static int64_t get_record_a(void) { return record_a; }
static int64_t get_record_b(void) { return record_b; }
static double get_record_ld(void) { return record_ld; }
static const char* get_record_str(void) { return record_str; }

static void reset(void) {
	add_calls = 0;
	connect_calls = 0;
	record_calls = 0;
	null_calls = 0;
	record_a = 0;
	record_b = 0;
	record_ld = 0;
	record_str[0] = 0;
	last_was_null = -1;
}
*/
import "C"

import (
	"unsafe"
)

// int add(int, int)
func Add() unsafe.Pointer { return C.fn_add() }

// char* connect_str(const char*, const char*); the result is malloc'd.
func ConnectStr() unsafe.Pointer { return C.fn_connect_str() }

// void free_str(char*); overwrites the string before freeing it.
func FreeStr() unsafe.Pointer { return C.fn_free_str() }

// void record_int64s(int64_t, int64_t)
func RecordInt64s() unsafe.Pointer { return C.fn_record_int64s() }

// void record_longdouble(long double)
func RecordLongDouble() unsafe.Pointer { return C.fn_record_longdouble() }

// void record_string(const char*)
func RecordString() unsafe.Pointer { return C.fn_record_string() }

// int is_null(void*)
func IsNull() unsafe.Pointer { return C.fn_is_null() }

// double scale(double, float)
func Scale() unsafe.Pointer { return C.fn_scale() }

// float halve(float)
func Halve() unsafe.Pointer { return C.fn_halve() }

func NegateSChar() unsafe.Pointer { return C.fn_negate_schar() }
func NegateShort() unsafe.Pointer { return C.fn_negate_short() }
func EchoUChar() unsafe.Pointer   { return C.fn_echo_uchar() }
func EchoUShort() unsafe.Pointer  { return C.fn_echo_ushort() }
func EchoUInt() unsafe.Pointer    { return C.fn_echo_uint() }
func EchoLong() unsafe.Pointer    { return C.fn_echo_long() }
func EchoInt8() unsafe.Pointer    { return C.fn_echo_int8() }
func EchoUInt64() unsafe.Pointer  { return C.fn_echo_uint64() }
func EchoPtr() unsafe.Pointer     { return C.fn_echo_ptr() }

// char* null_str(void); always returns NULL.
func NullStr() unsafe.Pointer { return C.fn_null_str() }

// char* static_str(const char*, const char*); returns one static buffer,
// overwritten by every call.
func StaticStr() unsafe.Pointer { return C.fn_static_str() }

func AddCalls() int     { return int(C.get_add_calls()) }
func ConnectCalls() int { return int(C.get_connect_calls()) }
func RecordCalls() int  { return int(C.get_record_calls()) }
func NullCalls() int    { return int(C.get_null_calls()) }

// Returns 1 if the last is_null call saw NULL, 0 if not, -1 if there was
// no call since Reset.
func LastWasNull() int { return int(C.get_last_was_null()) }

// Arguments of the last record_int64s call.
func Recorded() (int64, int64) {
	return int64(C.get_record_a()), int64(C.get_record_b())
}

func RecordedLongDouble() float64 { return float64(C.get_record_ld()) }

func RecordedString() string { return C.GoString(C.get_record_str()) }

// Returns a malloc'd copy of s.  Free it with Free.
func CString(s string) unsafe.Pointer { return unsafe.Pointer(C.CString(s)) }

func Free(p unsafe.Pointer) { C.free(p) }

// Zeroes every counter and recorded value.
func Reset() { C.reset() }
