package fields

import "github.com/JonMunkholm/rowgrid/internal/core"

func init() {
	for _, def := range []core.FieldDefinition{
		{Type: core.FieldShortText, Name: "Short Text", Clipboard: true},
		{Type: core.FieldLongText, Name: "Long Text", Clipboard: true},
		{Type: core.FieldRichText, Name: "Rich Text", Clipboard: true},
		{Type: core.FieldEmail, Name: "Email", Clipboard: true},
		{Type: core.FieldPhone, Name: "Phone", Clipboard: true},
		{Type: core.FieldURL, Name: "URL", Clipboard: true},
	} {
		def.Group = "Text"
		def.DataType = core.DataString
		def.InitialValue = ""
		def.Operators = textOperators
		core.RegisterField(def)
	}
}
