// Package providers registers every supported service with share_fetch.DefaultProviderRegistry when imported.
package providers

import (
	_ "github.com/alanbriolat/share-fetch/providers/gdrive"
	_ "github.com/alanbriolat/share-fetch/providers/wetransfer"
)
