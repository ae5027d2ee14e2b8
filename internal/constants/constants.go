package constants

const USER_AGENT = "blockfinder/0.1.0 (+https://github.com/Amund211/blockfinder)"
