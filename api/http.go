package api

const (
	// HTTPCheck is the path of the URL to upload an ELF image and check it against a board profile.
	HTTPCheck = "layout/v0/check"
	// HTTPGetReport is the path of the URL to fetch a stored report for an image and board.
	HTTPGetReport = "layout/v0/report"
	// HTTPGetImage is the path of the URL to fetch a previously uploaded ELF image.
	HTTPGetImage = "layout/v0/image"
	// HTTPListBoards is the path of the URL listing the board profiles the server checks against.
	HTTPListBoards = "layout/v0/boards"
)
