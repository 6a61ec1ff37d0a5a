// Copyright 2026 Google LLC. All Rights Reserved.
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

package elfimage

import "fmt"

// MissingSymbolError is returned when a symbol required by a query is not
// present in the image's symbol table.
type MissingSymbolError struct {
	Name string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("could not find symbol %q in program", e.Name)
}

// MissingSectionError is returned when a section required by a query is not
// present in the image's section headers.
type MissingSectionError struct {
	Name string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("could not find section %q in program", e.Name)
}

// MalformedBinaryError indicates that the bytes handed to Parse, or a
// structure decoded from them, are not a usable ELF image.
type MalformedBinaryError struct {
	Reason string
	Err    error
}

func (e *MalformedBinaryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed binary: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed binary: %s", e.Reason)
}

func (e *MalformedBinaryError) Unwrap() error {
	return e.Err
}
